package client

// Operation names as used in logs, metrics, events and dispatched requests.
const (
	ActionFindUnique        = "findUnique"
	ActionFindUniqueOrThrow = "findUniqueOrThrow"
	ActionFindFirst         = "findFirst"
	ActionFindFirstOrThrow  = "findFirstOrThrow"
	ActionFindMany          = "findMany"
	ActionCreate            = "create"
	ActionCreateMany        = "createMany"
	ActionUpdate            = "update"
	ActionUpdateMany        = "updateMany"
	ActionUpsert            = "upsert"
	ActionDelete            = "delete"
	ActionDeleteMany        = "deleteMany"
	ActionCount             = "count"
	ActionAggregate         = "aggregate"
	ActionGroupBy           = "groupBy"
	ActionExists            = "exists"
	ActionFindRaw           = "findRaw"
	ActionAggregateRaw      = "aggregateRaw"
)

// Actions lists every dispatchable typed operation.
func Actions() []string {
	return []string{
		ActionFindUnique, ActionFindUniqueOrThrow, ActionFindFirst, ActionFindFirstOrThrow,
		ActionFindMany, ActionCreate, ActionCreateMany, ActionUpdate, ActionUpdateMany,
		ActionUpsert, ActionDelete, ActionDeleteMany, ActionCount, ActionAggregate,
		ActionGroupBy, ActionExists,
	}
}

// IsWrite reports whether an action changes data.
func IsWrite(action string) bool {
	switch action {
	case ActionCreate, ActionCreateMany, ActionUpdate, ActionUpdateMany, ActionUpsert, ActionDelete, ActionDeleteMany:
		return true
	}
	return false
}
