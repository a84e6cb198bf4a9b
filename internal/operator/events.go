package operator

import "github.com/haasonsaas/operator/pkg/models"

// Event constructors keep the wire shapes in one place; the loop never
// fills event structs inline.

func sessionStartEvent(session *models.Session) models.AgentEvent {
	return models.SessionStartEvent{
		Type:       models.EventSessionStart,
		SessionID:  session.SessionID,
		SessionURL: session.SessionURL,
		ContextID:  session.ContextID,
	}
}

func startingURLEvent(url, reasoning string) models.AgentEvent {
	return models.StartingURLEvent{
		Type:      models.EventStartingURL,
		URL:       url,
		Reasoning: reasoning,
	}
}

func stepCompleteEvent(step models.Step) models.AgentEvent {
	return models.StepCompleteEvent{
		Type:   models.EventStepComplete,
		Result: step,
		Done:   false,
	}
}

func stepPlannedEvent(step models.Step, done bool) models.AgentEvent {
	return models.StepPlannedEvent{
		Type:   models.EventStepPlanned,
		Result: step,
		Done:   done,
	}
}

func stepExecutedEvent(step models.Step, extraction any, url *string) models.AgentEvent {
	return models.StepExecutedEvent{
		Type:        models.EventStepExecuted,
		Extraction:  extraction,
		CurrentStep: step,
		URL:         url,
	}
}

func completeEvent(steps []models.Step, final models.Step) models.AgentEvent {
	return models.CompleteEvent{
		Type:        models.EventComplete,
		Steps:       steps,
		FinalResult: final,
	}
}

func errorEvent(message string) models.AgentEvent {
	return models.ErrorEvent{
		Type:  models.EventError,
		Error: message,
	}
}
