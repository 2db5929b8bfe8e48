package models

// APIのエラーレスポンス {"msg": ..., "code": ...} で使うコード
const (
	CodeNoPlayers            = "no_players"
	CodeNoChallengesForUser  = "no_challenges_for_player"
	CodeConcurrencyExhausted = "concurrency_exhausted"
	CodeNotFound             = "not_found"
	CodeInvalidDraw          = "invalid_draw"
	CodeDrawNotFound         = "draw_not_found"
	CodeDrawsUnavailable     = "draws_unavailable"
	CodeBadRequest           = "bad_request"
	CodeServerError          = "server_error"
)
