package core

// validate.go holds the per-kind row validators.
//
// Each validator reports at most one error per row. Checks run in a fixed
// order so the reported error is deterministic: presence of required
// fields, then dictionary membership, then formats, then references to
// other entities.

import (
	"strings"

	"github.com/cockroachdb/errors"
)

const defaultSource = "manual"

// cell returns the trimmed value of column.
func cell(row Row, column string) string {
	return strings.TrimSpace(row.Get(column))
}

func validateEntity(row Row, snap *Snapshot, known *knownSet, requestFileID int64) (EntityRecord, error) {
	uid := cell(row, "entity_uid")
	if uid == "" {
		return EntityRecord{}, errors.New("entity_uid required")
	}
	typeCode := cell(row, "entity_type")
	if typeCode == "" {
		return EntityRecord{}, errors.New("entity_type required")
	}

	if !snap.Has(DictEntityTypes, typeCode) {
		return EntityRecord{}, errors.Newf("unknown entity_type: %s", typeCode)
	}
	flags := SplitList(row.Get("flags"))
	for _, f := range flags {
		if !snap.Has(DictFlags, f) {
			return EntityRecord{}, errors.Newf("unknown flag: %s", f)
		}
	}
	categories := SplitList(row.Get("categories"))
	for _, c := range categories {
		if !snap.Has(DictCategories, c) {
			return EntityRecord{}, errors.Newf("unknown category: %s", c)
		}
	}

	fileID := requestFileID
	if raw := cell(row, "file_id"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			return EntityRecord{}, errors.Newf("file_id invalid: %s", raw)
		}
		fileID = id
	}
	if fileID != 0 && !snap.HasEntityFile(fileID) {
		return EntityRecord{}, errors.Newf("unknown file_id: %d", fileID)
	}

	parent := cell(row, "parent_entity")
	if parent != "" && !known.has(parent) {
		return EntityRecord{}, errors.Newf("unknown parent_entity: %s", parent)
	}

	name := cell(row, "entity_name")
	if name == "" {
		name = uid
	}
	return EntityRecord{
		UID:         uid,
		Name:        name,
		TypeCode:    typeCode,
		ParentUID:   parent,
		Description: cell(row, "entity_description"),
		Country:     cell(row, "entity_country"),
		Comment:     cell(row, "comment"),
		FileID:      fileID,
		Flags:       dedupe(flags),
		Categories:  dedupe(categories),
	}, nil
}

// validateAffiliation leaves entity_uid untouched; the resolver decides
// what happens to an unknown reference.
func validateAffiliation(row Row, snap *Snapshot) (AffiliationRecord, error) {
	network := cell(row, "network")
	address := cell(row, "address")
	if network == "" || address == "" {
		return AffiliationRecord{}, errors.New("network/address required")
	}

	if !snap.Has(DictNetworks, network) {
		return AffiliationRecord{}, errors.Newf("unknown network: %s", network)
	}
	role := cell(row, "address_role")
	if role != "" && !snap.Has(DictAddressRoles, role) {
		return AffiliationRecord{}, errors.Newf("unknown address_role: %s", role)
	}

	if err := ValidateAddress(network, address); err != nil {
		return AffiliationRecord{}, err
	}

	source := cell(row, "source")
	if source == "" {
		source = defaultSource
	}
	return AffiliationRecord{
		Network:       network,
		Address:       address,
		EntityUID:     cell(row, "entity_uid"),
		Role:          role,
		Source:        source,
		Analyst:       cell(row, "analyst"),
		Comment:       cell(row, "comment"),
		ExtName:       cell(row, "ext_name"),
		ExtCategory:   cell(row, "ext_category"),
		ExtWalletName: cell(row, "ext_wallet_name"),
		ExtLabel:      cell(row, "ext_label"),
		IsHidden:      ParseHidden(row.Get("is_hidden")),
	}, nil
}

func validateIncident(row Row, snap *Snapshot) (IncidentRecord, error) {
	network := cell(row, "network")
	address := cell(row, "address")
	if network == "" || address == "" {
		return IncidentRecord{}, errors.New("network/address required")
	}
	incidentType := cell(row, "incident_type")
	if incidentType == "" {
		return IncidentRecord{}, errors.New("incident_type required")
	}
	rawDate := cell(row, "incident_date")
	if rawDate == "" {
		return IncidentRecord{}, errors.New("incident_date invalid")
	}

	if !snap.Has(DictNetworks, network) {
		return IncidentRecord{}, errors.Newf("unknown network: %s", network)
	}
	if !snap.Has(DictIncidentTypes, incidentType) {
		return IncidentRecord{}, errors.Newf("unknown incident_type: %s", incidentType)
	}

	if err := ValidateAddress(network, address); err != nil {
		return IncidentRecord{}, err
	}
	date, ok := ParseDate(rawDate)
	if !ok {
		return IncidentRecord{}, errors.New("incident_date invalid")
	}

	source := cell(row, "source")
	if source == "" {
		source = defaultSource
	}
	return IncidentRecord{
		Network:      network,
		Address:      address,
		EntityUID:    cell(row, "entity_uid"),
		IncidentType: incidentType,
		IncidentDate: date,
		Source:       source,
		WalletRole:   cell(row, "wallet_role"),
		Analyst:      cell(row, "analyst"),
		TxHashes:     cell(row, "tx_hashes"),
	}, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
