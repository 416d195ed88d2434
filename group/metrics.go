package group

import "github.com/uber-go/tally/v4"

type groupMetrics struct {
	tasksScheduled  tally.Counter
	tasksExecuted   tally.Counter
	zombiesMarked   tally.Counter
	zombiesFreed    tally.Counter
	forcedExits     tally.Counter
	gcNotifications tally.Counter
}

func newGroupMetrics(scope tally.Scope) *groupMetrics {
	return &groupMetrics{
		tasksScheduled:  scope.Counter("tasks_scheduled"),
		tasksExecuted:   scope.Counter("tasks_executed"),
		zombiesMarked:   scope.Counter("zombies_marked"),
		zombiesFreed:    scope.Counter("zombies_freed"),
		forcedExits:     scope.Counter("forced_exits"),
		gcNotifications: scope.Counter("gc_notifications"),
	}
}
