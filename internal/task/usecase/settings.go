package usecase

import (
	"context"

	syncrepo "taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
	"taskmirror/internal/task"
)

func (uc *implUseCase) GetSettings(ctx context.Context, sc model.Scope) (task.SettingsOutput, error) {
	integ, err := uc.integrations.GetIntegration(ctx, sc.UserID)
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.GetSettings: %v", err)
		return task.SettingsOutput{}, err
	}

	return task.SettingsOutput{
		Connected:      integ.UserID != "",
		SyncEnabled:    integ.SyncEnabled,
		DisabledReason: integ.DisabledReason,
		CalendarID:     integ.CalendarID,
	}, nil
}

func (uc *implUseCase) ConnectCalendar(ctx context.Context, sc model.Scope, input task.ConnectCalendarInput) error {
	if input.AccessToken == "" || input.RefreshToken == "" {
		return task.ErrMissingTokens
	}

	if err := uc.integrations.UpsertIntegration(ctx, syncrepo.UpsertIntegrationOptions{
		UserID:       sc.UserID,
		CalendarID:   input.CalendarID,
		SyncEnabled:  true,
		AccessToken:  input.AccessToken,
		RefreshToken: input.RefreshToken,
		TokenExpiry:  input.TokenExpiry,
	}); err != nil {
		uc.l.Errorf(ctx, "task/usecase.ConnectCalendar: %v", err)
		return err
	}

	// Existing units reach the calendar on the next reconciliation sweep;
	// nothing to enqueue here.
	uc.l.Infof(ctx, "task/usecase.ConnectCalendar: calendar connected for user %s", sc.UserID)
	return nil
}

func (uc *implUseCase) DisconnectCalendar(ctx context.Context, sc model.Scope) error {
	if err := uc.integrations.DisableIntegration(ctx, sc.UserID, "disconnected by user"); err != nil {
		uc.l.Errorf(ctx, "task/usecase.DisconnectCalendar: %v", err)
		return err
	}
	return nil
}
