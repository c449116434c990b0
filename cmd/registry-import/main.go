// Command registry-import manages the registry from the shell: migrations,
// dictionary seeding, container creation, imports, exports and templates.
// Imports are dry runs unless --apply is given.
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	Execute()
}
