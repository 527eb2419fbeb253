package schema

import (
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AmountScale   = 2
	QuantityScale = 3
)

type RequestType string

const (
	Economic  RequestType = "economic"
	Materials RequestType = "materials"
	Labor     RequestType = "labor"
	Other     RequestType = "other"
)

type CollaborationStatus string

const (
	CollaborationPending  CollaborationStatus = "pending"
	CollaborationAccepted CollaborationStatus = "accepted"
	CollaborationRejected CollaborationStatus = "rejected"
)

type Project struct {
	Id    string `gorm:"size:64;primaryKey"`
	OrgId string `gorm:"size:255;not null;index"`

	BonitaCaseId *string                 `gorm:"size:64"`
	Status       lifecycle.ProjectStatus `gorm:"size:20;not null;default:'pending'"`
	Observation  *string                 `gorm:"size:2000"`

	Stages       []Stage       `gorm:"foreignKey:ProjectId;constraint:OnDelete:CASCADE"`
	Observations []Observation `gorm:"foreignKey:ProjectId;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Stage struct {
	ProjectId string `gorm:"size:64;primaryKey"`
	Id        string `gorm:"size:64;primaryKey"`

	Name        string     `gorm:"size:120;not null"`
	Description *string    `gorm:"size:1000"`
	StartDate   *time.Time `gorm:"type:date"`
	EndDate     *time.Time `gorm:"type:date"`
	Order       int        `gorm:"column:display_order;not null;default:0"`

	Requests []Request `gorm:"foreignKey:ProjectId,StageId;references:ProjectId,Id;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Request struct {
	ProjectId string `gorm:"size:64;primaryKey"`
	Id        string `gorm:"size:64;primaryKey"`
	StageId   string `gorm:"size:64;not null;index"`

	Type        RequestType         `gorm:"size:20;not null"`
	Description string              `gorm:"size:300;not null"`
	Amount      decimal.NullDecimal `gorm:"type:decimal(15,2)"`
	Currency    *string             `gorm:"size:3"`
	Quantity    decimal.NullDecimal `gorm:"type:decimal(15,3)"`
	Unit        *string             `gorm:"size:50"`
	Order       int                 `gorm:"column:display_order;not null;default:0"`

	State lifecycle.State `gorm:"size:20;not null;default:'open';index"`

	Collaborations []Collaboration `gorm:"foreignKey:ProjectId,RequestId;references:ProjectId,Id;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Request) IsComplete() bool {
	return r.State == lifecycle.Done
}

func (r *Request) IsBeingCompleted() bool {
	return r.State == lifecycle.InProgress
}

type Collaboration struct {
	Id        string `gorm:"size:64;primaryKey"`
	ProjectId string `gorm:"size:64;not null;index:idx_collaboration_request"`
	RequestId string `gorm:"size:64;not null;index:idx_collaboration_request"`
	StageId   string `gorm:"size:64;not null"`
	OrgId     string `gorm:"size:255;not null;index"`

	CommittedAmount      decimal.NullDecimal `gorm:"type:decimal(15,2)"`
	CommittedCurrency    *string             `gorm:"size:3"`
	CommittedQuantity    decimal.NullDecimal `gorm:"type:decimal(15,3)"`
	CommittedUnit        *string             `gorm:"size:50"`
	Notes                *string             `gorm:"size:500"`
	ExpectedDeliveryDate *time.Time          `gorm:"type:date"`

	Status CollaborationStatus `gorm:"size:20;not null;default:'pending'"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Observation struct {
	Id        string `gorm:"size:64;primaryKey"`
	ProjectId string `gorm:"size:64;not null;index"`
	Content   string `gorm:"size:2000;not null"`

	IsCompleted bool `gorm:"not null;default:false"`
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Role string

const (
	RoleOriginating   Role = "ong originante"
	RoleCollaborating Role = "ong colaboradora"
	RoleNetwork       Role = "red ongs"
	RoleCouncil       Role = "consejo directivo"
	RoleUndefined     Role = "sin definir"
	RoleBonita        Role = "bonita"
)

var AllRoles = []Role{RoleOriginating, RoleCollaborating, RoleNetwork, RoleCouncil, RoleUndefined, RoleBonita}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:80;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	Role       Role `gorm:"size:50;not null;default:'sin definir'"`
	IsSysadmin bool `gorm:"not null;default:false"`
	IsActive   bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (u *User) MarkDeleted(now time.Time) {
	u.DeletedAt = &now
	u.IsActive = false
}

func (u *User) Restore() {
	u.DeletedAt = nil
	u.IsActive = true
}

func (u *User) CanLogin() bool {
	return u.DeletedAt == nil && u.IsActive
}

// AllTables lists every model in dependency order, for migrations and resets.
func AllTables() []interface{} {
	return []interface{}{
		&User{}, &Project{}, &Stage{}, &Request{}, &Collaboration{}, &Observation{},
	}
}
