package entity

type TaskStatus string

const (
	TaskStatusDone           TaskStatus = "done"
	TaskStatusBudgetExceeded TaskStatus = "budget_exceeded"
)
