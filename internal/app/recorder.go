package app

import (
	"context"
	"errors"
	"fmt"

	"assessment-session-service/internal/domain"
)

// ResponseRecorder persists exactly one response per item of an attempt.
type ResponseRecorder struct {
	responses ResponseStore
}

func NewResponseRecorder(responses ResponseStore) *ResponseRecorder {
	return &ResponseRecorder{responses: responses}
}

// Record grades the selection against the item's correct option and stores it.
// A second response for the same item fails with domain.ErrDuplicateResponse.
func (r *ResponseRecorder) Record(ctx context.Context, attemptID string, item domain.Item, selectedOption, elapsedSeconds int) (domain.Response, error) {
	if selectedOption < 0 || selectedOption >= len(item.Options) {
		return domain.Response{}, domain.ErrInvalidOption
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}

	response := domain.Response{
		AttemptID:        attemptID,
		ItemID:           item.ID,
		SelectedOption:   selectedOption,
		IsCorrect:        selectedOption == item.CorrectOption,
		TimeTakenSeconds: elapsedSeconds,
	}
	if err := r.responses.InsertResponse(ctx, response); err != nil {
		if errors.Is(err, domain.ErrConstraintViolation) {
			return domain.Response{}, domain.ErrDuplicateResponse
		}
		return domain.Response{}, fmt.Errorf("record response: %w", err)
	}
	return response, nil
}
