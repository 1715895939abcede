package models

// All returns every model managed by migrations, parents before children.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Organization{},
		&Workflow{},
		&WorkflowVersion{},
		&Machine{},
		&Deployment{},
		&WorkflowRun{},
		&RunOutput{},
		&Checkpoint{},
		&Model{},
		&APIKey{},
		&BillingAccount{},
	}
}
