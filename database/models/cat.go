package models

// Cat 猫咪记录，创建后不再修改
type Cat struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	ImagePath string `gorm:"column:image_path;not null" json:"image_path"`
}

// TableName 表名
func (Cat) TableName() string {
	return "cats"
}

// NewCat 创建输入，ID 由数据库生成
type NewCat struct {
	Name      string
	ImagePath string
}

// ToModel 转换为待插入的 Cat
func (n *NewCat) ToModel() *Cat {
	return &Cat{
		Name:      n.Name,
		ImagePath: n.ImagePath,
	}
}
