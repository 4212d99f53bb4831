package services

import (
	"fmt"

	"studyplan-backend/internal/models"
)

// sessionTransitions lists the states each state may move to. Completed
// and cancelled are terminal.
var sessionTransitions = map[models.SessionState][]models.SessionState{
	models.SessionScheduled: {models.SessionActive, models.SessionCancelled},
	models.SessionActive:    {models.SessionCompleted, models.SessionCancelled},
}

func canTransition(from, to models.SessionState) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to models.SessionState) error {
	if canTransition(from, to) {
		return nil
	}
	return &InvalidStateError{Message: fmt.Sprintf("Cannot move a %s session to %s", from, to)}
}
