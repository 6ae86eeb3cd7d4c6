package wizard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"movemarket/internal/mailer"
	"movemarket/internal/storage"
	"movemarket/internal/utils"
	"movemarket/pkg/types"
)

const moveDateLayout = "2006-01-02"

// Submit materializes the wizard's form into a request. It generates a
// collision-free short code, uploads queued media when the survey method
// calls for it, and hands the request, contact record, profile upsert,
// and draft cleanup to the store as one transaction. On any failure the
// draft is untouched and the engine stays submittable.
func (e *Engine) Submit(ctx context.Context, progress storage.ProgressFunc) (string, error) {
	e.mu.Lock()

	if e.userID == "" {
		e.mu.Unlock()
		return "", ErrNotAuthenticated
	}

	if e.submitting {
		e.mu.Unlock()
		return "", ErrSubmissionInFlight
	}

	for i := range Steps {
		if !ValidateStep(i, e.fields) {
			e.mu.Unlock()
			return "", ErrValidation
		}
	}

	e.submitting = true

	fields := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}
	media := make([]storage.Upload, len(e.media))
	copy(media, e.media)

	e.mu.Unlock()

	code, err := e.submit(ctx, fields, media, progress)
	if err != nil {
		e.mu.Lock()
		e.submitting = false
		e.mu.Unlock()
		return "", err
	}

	// Drop any autosave still pending from pre-submit edits; it would
	// resurrect the draft the transaction just deleted.
	e.sched.Cancel()

	e.mu.Lock()
	e.resetLocked()
	e.submitting = false
	e.mu.Unlock()

	return code, nil
}

func (e *Engine) submit(ctx context.Context, fields map[string]string, media []storage.Upload, progress storage.ProgressFunc) (string, error) {
	code, err := e.generateCode(ctx)
	if err != nil {
		return "", err
	}

	surveyMethod := types.SurveyMethod(strings.TrimSpace(fields[FieldSurveyMethod]))

	var mediaURLs []string
	if surveyMethod == types.SurveyMethodUploadNow && len(media) > 0 {
		mediaURLs, err = e.blobs.UploadAll(ctx, "requests/"+code, media, progress)
		if err != nil {
			return "", fmt.Errorf("failed to upload request media: %w", err)
		}
	}

	request, contact, err := buildSubmission(code, e.userID, fields, mediaURLs)
	if err != nil {
		return "", err
	}

	if err := e.store.Submit(ctx, request, contact); err != nil {
		return "", err
	}

	if surveyMethod == types.SurveyMethodUploadLater {
		err := e.mail.Send(mailer.TemplateUploadLater, contact.Email, map[string]string{
			"code":       code,
			"upload_url": fmt.Sprintf("%s?code=%s", e.uploadURL, code),
		})
		if err != nil {
			// Mail is fire-and-forget; the submission already committed.
			e.logger.WithError(err).WithField("code", code).Warn("upload-later mail failed")
		}
	}

	e.logger.WithField("code", code).Info("request submitted")

	return code, nil
}

// generateCode loops until a candidate short code has no collision in
// the store. With a 36^5 space the loop all but never repeats.
func (e *Engine) generateCode(ctx context.Context) (string, error) {
	for {
		code := utils.RequestCode()

		exists, err := e.store.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check request code: %w", err)
		}

		if !exists {
			return code, nil
		}
	}
}

func buildSubmission(code, userID string, fields map[string]string, mediaURLs []string) (*types.Request, *types.RequestContact, error) {
	get := func(name string) string {
		return strings.TrimSpace(fields[name])
	}

	optional := func(name string) *string {
		if v := get(name); v != "" {
			return &v
		}
		return nil
	}

	flexible := get(FieldFlexibleDates) == "true"

	var moveDate *time.Time
	if raw := get(FieldMoveDate); raw != "" && !flexible {
		parsed, err := time.Parse(moveDateLayout, raw)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid move date %q: %w", raw, err)
		}
		moveDate = &parsed
	}

	if mediaURLs == nil {
		mediaURLs = []string{}
	}

	request := &types.Request{
		Code:             code,
		UserID:           userID,
		ServiceType:      get(FieldServiceType),
		PickupProperty:   get(FieldPickupProperty),
		PickupCounty:     get(FieldPickupCounty),
		PickupCity:       get(FieldPickupCity),
		PickupStreet:     optional(FieldPickupStreet),
		DeliveryProperty: get(FieldDeliveryProperty),
		DeliveryCounty:   get(FieldDeliveryCounty),
		DeliveryCity:     get(FieldDeliveryCity),
		DeliveryStreet:   optional(FieldDeliveryStreet),
		MoveDate:         moveDate,
		FlexibleDates:    flexible,
		Packing:          optional(FieldPacking),
		Dismantling:      optional(FieldDismantling),
		SurveyMethod:     types.SurveyMethod(get(FieldSurveyMethod)),
		MediaURLs:        mediaURLs,
	}

	contact := &types.RequestContact{
		Name:  get(FieldContactName),
		Phone: get(FieldContactPhone),
		Email: get(FieldContactEmail),
	}

	return request, contact, nil
}
