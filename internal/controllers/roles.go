package controllers

import "github.com/zaqqye/simlab_backend/internal/models"

var allowedRoles = map[string]struct{}{
	models.RoleStudent:    {},
	models.RoleInstructor: {},
	models.RoleAdmin:      {},
	models.RoleTechAdmin:  {},
}

func IsValidRole(role string) bool {
	_, ok := allowedRoles[role]
	return ok
}
