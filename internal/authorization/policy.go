package authorization

import (
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectLicense        = "license"
	ObjectCustomer       = "customer"
	ObjectProduct        = "product"
	ObjectReturnedFields = "returned_fields"
	ObjectAPIKey         = "api_key"
	ObjectAuditLog       = "audit_log"
	ObjectTeam           = "team"
)

// Actions are "<object>.<verb>".
const (
	ActionLicenseView    = "license.view"
	ActionLicenseCreate  = "license.create"
	ActionLicenseReveal  = "license.reveal"
	ActionLicenseSuspend = "license.suspend"
	ActionLicenseDelete  = "license.delete"

	ActionCustomerView   = "customer.view"
	ActionCustomerCreate = "customer.create"

	ActionProductView   = "product.view"
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"

	ActionReturnedFieldsView   = "returned_fields.view"
	ActionReturnedFieldsUpdate = "returned_fields.update"

	ActionAPIKeyView   = "api_key.view"
	ActionAPIKeyCreate = "api_key.create"
	ActionAPIKeyRevoke = "api_key.revoke"

	ActionAuditLogView = "audit_log.view"

	ActionTeamView          = "team.view"
	ActionTeamSigningSecret = "team.signing_secret"
)

// roleRank orders roles. Each role holds every grant of the roles below it.
var roleRank = map[string]int{
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// minimumRole is the lowest role allowed to perform each action.
var minimumRole = map[string]string{
	ActionLicenseView:          RoleMember,
	ActionCustomerView:         RoleMember,
	ActionProductView:          RoleMember,
	ActionReturnedFieldsView:   RoleMember,
	ActionTeamView:             RoleMember,
	ActionLicenseCreate:        RoleAdmin,
	ActionLicenseReveal:        RoleAdmin,
	ActionLicenseSuspend:       RoleAdmin,
	ActionCustomerCreate:       RoleAdmin,
	ActionProductCreate:        RoleAdmin,
	ActionProductUpdate:        RoleAdmin,
	ActionReturnedFieldsUpdate: RoleAdmin,
	ActionAPIKeyView:           RoleAdmin,
	ActionAPIKeyCreate:         RoleAdmin,
	ActionAuditLogView:         RoleAdmin,
	ActionLicenseDelete:        RoleOwner,
	ActionAPIKeyRevoke:         RoleOwner,
	ActionTeamSigningSecret:    RoleOwner,
}

// Granted actions that leave an audit trail even on success.
var auditedGrants = map[string]bool{
	ActionLicenseReveal:     true,
	ActionAPIKeyRevoke:      true,
	ActionTeamSigningSecret: true,
}

// NewEnforcer loads the casbin model, persists policies through gorm and
// makes sure the built-in role grants exist.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// seedPolicies adds (role, object, action) for every role ranked at or above
// an action's minimum. Existing rules are left alone.
func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	var rules [][]string
	for action, min := range minimumRole {
		for role, rank := range roleRank {
			if rank >= roleRank[min] {
				rules = append(rules, []string{roleSubject(role), objectOf(action), action})
			}
		}
	}
	for _, rule := range rules {
		has, err := enforcer.HasPolicy(rule[0], rule[1], rule[2])
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return err
		}
	}
	return nil
}

func objectOf(action string) string {
	object, _, _ := strings.Cut(action, ".")
	return object
}

func roleSubject(role string) string { return "role:" + role }
