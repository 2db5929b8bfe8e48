package models

// Victim は抽選で選ばれたプレイヤーです。
type Victim struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Round は1回の抽選結果。Music はクリップが無ければ nil
type Round struct {
	Challenge Challenge  `json:"challenge"`
	Victim    Victim     `json:"victim"`
	Music     *AudioClip `json:"music"`
}

// PendingDraw は確定前の乱数抽選です。
type PendingDraw struct {
	ID            string `json:"drawId"`
	GameID        uint   `json:"gameId"`
	Numbers       []int  `json:"numbers"`
	ResetRangeMax int    `json:"resetRangeMax"`
}
