package model

import "time"

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// User 用户。位置 (0,0) 表示尚未上报。
// 约束：phone_number 唯一；idx_lat_lng 供附近查询的包围盒预筛。
type User struct {
	ID              string     `gorm:"column:id;type:char(20);primaryKey;comment:雪花id"`
	Name            string     `gorm:"column:name;type:varchar(50);not null;comment:昵称"`
	PhoneNumber     string     `gorm:"column:phone_number;type:varchar(32);not null;uniqueIndex:uidx_phone;comment:手机号"`
	Gender          string     `gorm:"column:gender;type:varchar(8);not null;comment:male/female/other"`
	Address         string     `gorm:"column:address;type:varchar(255);not null;default:'';comment:地址"`
	Lat             float64    `gorm:"column:lat;type:double;not null;default:0;index:idx_lat_lng,priority:1;comment:纬度"`
	Lng             float64    `gorm:"column:lng;type:double;not null;default:0;index:idx_lat_lng,priority:2;comment:经度"`
	ProfilePhoto    string     `gorm:"column:profile_photo;type:varchar(512);not null;default:'';comment:头像地址"`
	Bio             string     `gorm:"column:bio;type:varchar(500);not null;default:'';comment:自我介绍"`
	IsOnline        bool       `gorm:"column:is_online;not null;default:false;index;comment:是否在线"`
	LastSeen        time.Time  `gorm:"column:last_seen;comment:最近活跃时间"`
	MatchCount      int        `gorm:"column:match_count;not null;default:0;comment:匹配成功次数"`
	ActualMeetCount int        `gorm:"column:actual_meet_count;not null;default:0;comment:实际见面次数"`
	SmsVerified     bool       `gorm:"column:sms_verified;not null;default:false;index;comment:是否完成短信验证"`
	SmsCode         *string    `gorm:"column:sms_code;type:varchar(72);comment:验证码bcrypt哈希" json:"-"`
	SmsCodeExpiry   *time.Time `gorm:"column:sms_code_expiry;comment:验证码过期时间" json:"-"`
	SocketID        *string    `gorm:"column:socket_id;type:varchar(32);comment:当前连接id" json:"-"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// HasLocation 位置是否已上报
func (u *User) HasLocation() bool {
	return u != nil && !(u.Lat == 0 && u.Lng == 0)
}
