// Package errors provides structured domain errors for the arena service.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Action errors
	CodeIllegalAction     Code = "ILLEGAL_ACTION"
	CodeActionMissing     Code = "ACTION_MISSING"
	CodeCommitMismatch    Code = "COMMIT_MISMATCH"
	CodeCommitOutOfOrder  Code = "COMMIT_OUT_OF_ORDER"
	CodeNotSubmissionTurn Code = "NOT_SUBMISSION_TURN"

	// Battle lifecycle errors
	CodeBattleOver         Code = "BATTLE_OVER"
	CodeBattleInProgress   Code = "BATTLE_IN_PROGRESS"
	CodeZeroDurationBattle Code = "ZERO_DURATION_BATTLE"

	// Configuration errors
	CodeRosterMismatch        Code = "ROSTER_MISMATCH"
	CodeRosterInvalid         Code = "ROSTER_INVALID"
	CodeUnauthorizedInitiator Code = "UNAUTHORIZED_INITIATOR"
	CodeInvalidConfig         Code = "INVALID_CONFIG"

	// Auth errors
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Effect storage errors
	CodeEffectStorage Code = "EFFECT_STORAGE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeIllegalAction,
		CodeCommitMismatch,
		CodeRosterMismatch,
		CodeRosterInvalid,
		CodeInvalidConfig:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeActionMissing,
		CodeCommitOutOfOrder,
		CodeNotSubmissionTurn,
		CodeBattleOver:
		return codes.FailedPrecondition

	case CodeBattleInProgress:
		return codes.AlreadyExists

	case CodeUnauthorizedInitiator,
		CodePermissionDenied:
		return codes.PermissionDenied

	case CodeUnauthenticated:
		return codes.Unauthenticated

	case CodeNotFound:
		return codes.NotFound

	// Internal - platform invariants broken
	case CodeZeroDurationBattle,
		CodeEffectStorage:
		return codes.Internal

	default:
		return codes.Internal
	}
}

// Fatal reports whether the code aborts the whole call. Illegal actions are
// rejected individually and never abort a turn.
func (c Code) Fatal() bool {
	switch c {
	case CodeIllegalAction, CodeCommitMismatch, CodeCommitOutOfOrder, CodeNotSubmissionTurn:
		return false
	default:
		return true
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition, codes.AlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
