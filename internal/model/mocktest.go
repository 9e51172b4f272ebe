package model

import (
	"gorm.io/datatypes"
)

// swagger:model MockTest
type MockTest struct {
	UUIDBase

	Title           string  `gorm:"size:200;not null" json:"title"`
	Description     string  `gorm:"type:text" json:"description"`
	Category        string  `gorm:"size:100;index" json:"category"`
	DurationMinutes int     `gorm:"not null" json:"durationMinutes"`
	TotalMarks      float64 `json:"totalMarks"`
	IsPublished     bool    `gorm:"default:false;index" json:"isPublished"`
	CreatorID       uint    `gorm:"index;type:bigint unsigned" json:"creatorId"`

	Questions []Question `gorm:"foreignKey:MockTestID" json:"questions,omitempty"`
}

func (MockTest) TableName() string {
	return "mock_tests"
}

// swagger:model Question
type Question struct {
	UUIDBase

	MockTestID    string         `gorm:"index;type:varchar(36)" json:"mockTestId"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	Options       datatypes.JSON `json:"options"`
	CorrectAnswer string         `gorm:"size:500;not null" json:"-"`
	Explanation   string         `gorm:"type:text" json:"explanation,omitempty"`
	Marks         float64        `gorm:"not null" json:"marks"`
	NegativeMarks float64        `gorm:"default:0" json:"negativeMarks"`
	Subject       string         `gorm:"size:100" json:"subject"`
	Topic         string         `gorm:"size:100;index" json:"topic"`
	Difficulty    string         `gorm:"size:20" json:"difficulty"`
	Order         int            `gorm:"column:question_order" json:"order"`
}

func (Question) TableName() string {
	return "questions"
}
