package models

// GameRegisterRequest はゲーム作成リクエストのボディです。
type GameRegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest はユーザーログインのボディ。所属は gameId で特定する
type LoginRequest struct {
	GameID   uint   `json:"gameId" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginRequest はスーパー管理者ログインのボディです。
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type PermissionsRequest struct {
	CanPlay *bool `json:"canPlay"`
}

// GameUpdateRequest は家族管理者によるゲーム設定更新です。
type GameUpdateRequest struct {
	Name                string `json:"name"`
	Password            string `json:"password"`
	MinTime             *int   `json:"minTime"`
	MaxTime             *int   `json:"maxTime"`
	DefaultParticipants *int   `json:"defaultParticipants"`
}

type UserUpdateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	CanPlay  *bool  `json:"canPlay"`
}

// ChallengeRequest はお題の作成・更新ボディ。ポインタは未指定を区別するため
type ChallengeRequest struct {
	Title         string       `json:"title"`
	Text          string       `json:"text"`
	Description   string       `json:"description"`
	VoiceConfig   VoiceConfig  `json:"voiceConfig"`
	Participants  *int         `json:"participants"`
	TimeLimit     *int         `json:"timeLimit"`
	DurationLimit *int         `json:"durationLimit"`
	DurationType  DurationType `json:"durationType"`
	Objects       string       `json:"objects"`
	Rules         string       `json:"rules"`
	Notes         string       `json:"notes"`
	Punishment    string       `json:"punishment"`
	PlayerConfig  PlayerConfig `json:"playerConfig"`
	Multimedia    Multimedia   `json:"multimedia"`
	SoundID       *uint        `json:"soundId"`
}

type RecordNumbersRequest struct {
	Numbers       []int `json:"numbers"`
	ResetRangeMax int   `json:"resetRangeMax"`
}

type PreviewNumbersRequest struct {
	MaxValue int `json:"maxValue" binding:"required"`
	Count    int `json:"count" binding:"required"`
}

type CommitNumbersRequest struct {
	DrawID string `json:"drawId" binding:"required"`
}

type DurationRequest struct {
	Duration int `json:"duration" binding:"required"`
}
