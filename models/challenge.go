package models

import (
	"gorm.io/gorm"
)

type DurationType string

const (
	DurationFixed          DurationType = "fixed"
	DurationUntilNext      DurationType = "untilNext"
	DurationMultiChallenge DurationType = "multiChallenge"
)

type TargetType string

const (
	TargetAll      TargetType = "all"
	TargetOdd      TargetType = "odd"
	TargetEven     TargetType = "even"
	TargetSpecific TargetType = "specific"
	TargetCustom   TargetType = "custom"
	TargetRandom   TargetType = "random"
)

const (
	DefaultTimeLimit     = 60
	DefaultDurationLimit = 1
	DefaultVoiceName     = "default"
)

// VoiceConfig は読み上げ音声の設定です。
type VoiceConfig struct {
	Name  string  `json:"name"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// PlayerConfig は誰がこのお題を受けるかの指定です。
type PlayerConfig struct {
	TargetType     TargetType `json:"targetType"`
	Grouping       string     `json:"grouping"`
	Position       string     `json:"position"`
	PositionOffset int        `json:"positionOffset"`
	AgeRange       string     `json:"ageRange"`
	CustomText     string     `json:"customText"`
}

type MediaRef struct {
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type Multimedia struct {
	Image    MediaRef `json:"image"`
	Audio    MediaRef `json:"audio"`
	Video    MediaRef `json:"video"`
	Document MediaRef `json:"document"`
}

// Challenge モデルの定義。プレイヤーが投稿したお題
type Challenge struct {
	gorm.Model
	GameID      uint        `gorm:"not null;index" json:"gameId"`
	UploaderID  uint        `gorm:"not null;index" json:"uploaderId"`
	Title       string      `gorm:"not null" json:"title"`
	Text        string      `gorm:"not null" json:"text"`
	Description string      `json:"description"`
	Voice       VoiceConfig `gorm:"embedded;embeddedPrefix:voice_" json:"voiceConfig"`

	Participants  int          `gorm:"not null" json:"participants"`
	TimeLimit     int          `gorm:"not null" json:"timeLimit"` // 0は無制限
	DurationLimit int          `gorm:"not null" json:"durationLimit"`
	DurationType  DurationType `gorm:"not null" json:"durationType"`

	Objects    string       `json:"objects"`
	Rules      string       `json:"rules"`
	Notes      string       `json:"notes"`
	Punishment string       `json:"punishment"`
	Player     PlayerConfig `gorm:"embedded;embeddedPrefix:player_" json:"playerConfig"`
	Multimedia Multimedia   `gorm:"serializer:json" json:"multimedia"`

	SoundID *uint      `json:"soundId"`
	Sound   *AudioClip `gorm:"foreignKey:SoundID" json:"sound,omitempty"`
}

// HasFiniteDuration reports whether the challenge runs a countdown after Play.
func (c *Challenge) HasFiniteDuration() bool {
	if c.DurationType != "" && c.DurationType != DurationFixed {
		return false
	}
	return c.TimeLimit > 0
}

// ApplyDefaults fills zero-valued settings that have a documented default.
// TimeLimit is left alone since zero means indefinite.
func (c *Challenge) ApplyDefaults() {
	if c.Participants < 1 {
		c.Participants = 1
	}
	if c.DurationLimit < 1 {
		c.DurationLimit = DefaultDurationLimit
	}
	if c.DurationType == "" {
		c.DurationType = DurationFixed
	}
	if c.Voice.Name == "" {
		c.Voice.Name = DefaultVoiceName
	}
	if c.Voice.Rate == 0 {
		c.Voice.Rate = 1
	}
	if c.Voice.Pitch == 0 {
		c.Voice.Pitch = 1
	}
	if c.Player.TargetType == "" {
		c.Player.TargetType = TargetAll
	}
	if c.Player.Grouping == "" {
		c.Player.Grouping = "individual"
	}
	if c.Player.Position == "" {
		c.Player.Position = "none"
	}
}
