package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username     string       `gorm:"uniqueIndex;size:64"`
	PasswordHash string       `gorm:"size:255"`
	Invitations  []Invitation `gorm:"constraint:OnDelete:CASCADE"`
}

// Invitation 表示用户创建的一份邀请函。
// Content 存旧画布格式（canvas.State 的 JSON），编辑器在内存中
// 使用区块文档，出入库时经 canvas 包转换。
type Invitation struct {
	gorm.Model
	Title              string         `gorm:"size:255"`
	Slug               string         `gorm:"uniqueIndex;size:64"` // 公开访问路径 /view/:slug
	Content            datatypes.JSON `gorm:"type:jsonb"`
	Status             string         `gorm:"size:32;default:draft"` // draft | published
	TemplateID         string         `gorm:"size:64"`               // 内置模板 id 或 Template 主键
	PreviewImageURL    string         `gorm:"size:512"`
	PublishedObjectKey string         `gorm:"size:512"` // 发布产物（静态 HTML）的 objectKey
	UserID             uint           `gorm:"index"`
	User               User           `gorm:"constraint:OnDelete:CASCADE"`
}

// Template 表示可复用的邀请函模板。
// 内置模板由 cmd/admin 播种为公开模板；用户也可以创建私有模板。
type Template struct {
	gorm.Model
	Name            string         `gorm:"size:255"`
	Category        string         `gorm:"size:32;index"` // classic | modern | romantic | minimal
	HTMLStructure   string         `gorm:"type:text"`
	CSSStyles       datatypes.JSON `gorm:"type:jsonb"`
	PreviewImageURL string         `gorm:"size:512"`
	IsPublic        bool           `gorm:"default:false"`
	UserID          uint           `gorm:"index"`
}

// Asset 记录用户上传的图片资源（婚纱照等），实体存 MinIO。
type Asset struct {
	gorm.Model
	UserID    uint   `gorm:"index"`
	ObjectKey string `gorm:"uniqueIndex;size:255"`
}
