package session

import "partyserver/models"

// State はゲームモード画面の進行状態です。
type State string

const (
	Idle            State = "IDLE"
	Countdown       State = "COUNTDOWN"
	ManualSelection State = "MANUAL_SELECTION"
	Selecting       State = "SELECTING"
	ThemeAudio      State = "THEME_AUDIO"
	Announcing      State = "ANNOUNCING"
	ReadyToPlay     State = "READY_TO_PLAY"
	ActiveTimer     State = "ACTIVE_TIMER"
	Finished        State = "FINISHED"
)

// Snapshot is a copy of the observable orchestrator state.
type Snapshot struct {
	State State
	// 時間制のフェーズの残り秒数
	Remaining int
	Round     *models.Round
	Numbers   []int
	Speaking  bool
	Manual    bool
	Err       error
}
