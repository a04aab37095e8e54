package model

type Admin struct {
	ID uint64 `gorm:"primaryKey"`

	Username string `gorm:"column:username;type:varchar(50);not null;unique"`

	PasswordHash string `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
}

// TableName returns the database table name.
func (Admin) TableName() string {
	return "admin"
}
