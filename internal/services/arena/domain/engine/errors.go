package engine

import (
	"fmt"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
)

// Sentinels for errors.Is. Returned errors carry the same code plus battle
// metadata, and match these by code.
var (
	ErrIllegalAction         = apperrors.New(apperrors.CodeIllegalAction, "illegal action")
	ErrBattleOver            = apperrors.New(apperrors.CodeBattleOver, "battle is over")
	ErrActionMissing         = apperrors.New(apperrors.CodeActionMissing, "action missing")
	ErrNotFound              = apperrors.New(apperrors.CodeNotFound, "battle not found")
	ErrBattleInProgress      = apperrors.New(apperrors.CodeBattleInProgress, "battle in progress")
	ErrZeroDuration          = apperrors.New(apperrors.CodeZeroDurationBattle, "battle ended at its start instant")
	ErrCommitMismatch        = apperrors.New(apperrors.CodeCommitMismatch, "commitment mismatch")
	ErrCommitOutOfOrder      = apperrors.New(apperrors.CodeCommitOutOfOrder, "commit or reveal out of order")
	ErrNotSubmissionTurn     = apperrors.New(apperrors.CodeNotSubmissionTurn, "player does not act this turn")
	ErrRosterMismatch        = apperrors.New(apperrors.CodeRosterMismatch, "roster sizes differ")
	ErrRosterInvalid         = apperrors.New(apperrors.CodeRosterInvalid, "roster invalid")
	ErrUnauthorizedInitiator = apperrors.New(apperrors.CodeUnauthorizedInitiator, "initiator is not a participant")
	ErrInvalidConfig         = apperrors.New(apperrors.CodeInvalidConfig, "invalid battle config")
	ErrEffectStorage         = apperrors.New(apperrors.CodeEffectStorage, "effect storage")
)

func battleError(code apperrors.Code, battleID, format string, args ...any) *apperrors.Error {
	return apperrors.WithMetadata(code, fmt.Sprintf(format, args...), map[string]string{"BattleID": battleID})
}
