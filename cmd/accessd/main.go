// Command accessd hosts the RBAC repository, access-evaluation engine, and
// JWT provider, exposing them as a Cobra CLI ("serve" and "iam").
package main

import "github.com/trelnex/accessd/cmd/accessd/cmd"

func main() {
	cmd.Execute()
}
