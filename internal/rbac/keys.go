package rbac

import "strings"

// Subject-name prefixes and composition rules for the single-table data
// model.
const (
	resourceSubject   = "#resource"
	scopePrefix       = "scope#"
	rolePrefix        = "role#"
)

func scopeSubject(scopeName string) string { return scopePrefix + scopeName }
func roleSubject(roleName string) string   { return rolePrefix + roleName }

func scopeAssignmentSubject(scopeName, principalID string) string {
	return scopePrefix + scopeName + "#" + principalID
}

func roleAssignmentSubject(roleName, principalID string) string {
	return rolePrefix + roleName + "#" + principalID
}

// scopeAssignmentPrefix returns the subjectName prefix matching every scope
// assignment for scopeName on a resource, used by DeleteScope's cascade.
func scopeAssignmentPrefix(scopeName string) string {
	return scopePrefix + scopeName + "#"
}

func roleAssignmentPrefix(roleName string) string {
	return rolePrefix + roleName + "#"
}

// parseScopeAssignment extracts the scope name and principal id from a
// subjectName of the form "scope#<name>#<principalId>". ok is false for any
// other shape (including the bare scope row "scope#<name>").
func parseScopeAssignment(subjectName string) (scopeName, principalID string, ok bool) {
	return parseAssignment(subjectName, scopePrefix)
}

func parseRoleAssignment(subjectName string) (roleName, principalID string, ok bool) {
	return parseAssignment(subjectName, rolePrefix)
}

func parseAssignment(subjectName, prefix string) (name, principalID string, ok bool) {
	rest, found := strings.CutPrefix(subjectName, prefix)
	if !found {
		return "", "", false
	}
	idx := strings.LastIndex(rest, "#")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// hasPrincipalSuffix reports whether subjectName ends with "#"+principalID,
// the shape every assignment row has (scope or role), used by
// DeletePrincipal's sweep.
func hasPrincipalSuffix(subjectName, principalID string) bool {
	return strings.HasSuffix(subjectName, "#"+principalID)
}
