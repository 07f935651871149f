package backend

import "fmt"

// Permission strings in the backend's grammar, e.g. read("user:abc").

func ReadPermission(role string) string { return fmt.Sprintf("read(%q)", role) }

func UpdatePermission(role string) string { return fmt.Sprintf("update(%q)", role) }

func DeletePermission(role string) string { return fmt.Sprintf("delete(%q)", role) }

// UserRole names a single-user role.
func UserRole(userID string) string { return "user:" + userID }
