package identity

// Permission names a single operation a role may perform. The orchestrator
// and ledger consult this table once per operation instead of re-checking
// roles ad hoc in every endpoint.
type Permission string

const (
	PermBookStaff        Permission = "book:staff"
	PermBookPortal       Permission = "book:portal"
	PermStartSession     Permission = "session:start"
	PermCompleteSession  Permission = "session:complete"
	PermMarkNoShow       Permission = "session:no_show"
	PermCancelAny        Permission = "appointment:cancel"
	PermRecordPayment    Permission = "payment:record"
	PermRecordExpense    Permission = "expense:record"
	PermVoidTransaction  Permission = "transaction:void"
	PermManageRegister   Permission = "cash_register:manage"
	PermViewHistory      Permission = "history:view"
)

var capabilities = map[Role]map[Permission]bool{
	RoleAdmin: {
		PermBookStaff:       true,
		PermStartSession:    true,
		PermCompleteSession: true,
		PermMarkNoShow:      true,
		PermCancelAny:       true,
		PermRecordPayment:   true,
		PermRecordExpense:   true,
		PermVoidTransaction: true,
		PermManageRegister:  true,
		PermViewHistory:     true,
	},
	RoleReception: {
		PermBookStaff:       true,
		PermStartSession:    true,
		PermCompleteSession: true,
		PermMarkNoShow:      true,
		PermCancelAny:       true,
		PermRecordPayment:   true,
		PermManageRegister:  true,
		PermViewHistory:     true,
	},
	RoleTherapist: {
		PermStartSession:    true,
		PermCompleteSession: true,
	},
	RoleClient: {
		PermBookPortal: true,
	},
}

// Can reports whether the actor's role grants the permission.
func (a Actor) Can(p Permission) bool {
	return capabilities[a.Role][p]
}

// RequiresCashRegister reports whether the role must have an open cash
// drawer session before recording cash-bearing transactions.
func (r Role) RequiresCashRegister() bool {
	return r == RoleReception
}
