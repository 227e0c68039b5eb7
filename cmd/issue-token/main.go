// issue-token mints a session token for local testing and ops access.
//
// Usage:
//
//	API_SECRET=... go run ./cmd/issue-token --id u-1 --name "Jane Doe" --role moderator
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/integrity_backend/utils"
)

func main() {
	userID := flag.String("id", "", "Required: user id")
	name := flag.String("name", "", "Optional: display name")
	role := flag.String("role", utils.RoleEmployee, "Role: employee, moderator or admin")
	flag.Parse()

	if strings.TrimSpace(*userID) == "" {
		fmt.Fprintln(os.Stderr, "--id is required")
		os.Exit(1)
	}
	switch *role {
	case utils.RoleEmployee, utils.RoleModerator, utils.RoleAdmin:
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(*userID, *name, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
