package models

// All enumerates the models registered for schema migration.
var All = []interface{}{
	&TestRunRecord{},
	&SuiteRecord{},
}
