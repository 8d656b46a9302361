package models

// Citation is a bibliographic reference owned by exactly one Article.
type Citation struct {
	ID        uint     `json:"id" gorm:"primaryKey"`
	ArticleID uint     `json:"articleId" gorm:"not null;index"`
	Article   *Article `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	Source string `json:"source" gorm:"type:text;not null"`
	Author string `json:"author,omitempty" gorm:"type:text"`
	Year   *int   `json:"year,omitempty"`
	URL    string `json:"url,omitempty" gorm:"type:text"`
	Quote  string `json:"quote,omitempty" gorm:"type:text"`
}

func (Citation) TableName() string { return "citations" }
