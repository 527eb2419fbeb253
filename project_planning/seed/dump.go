package seed

import (
	"fmt"
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatDecimal(value decimal.NullDecimal, scale int32) string {
	if !value.Valid {
		return ""
	}
	return value.Decimal.StringFixed(scale)
}

func formatDate(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.Format(dateFormat)
}

// Dump reads every table back in the seed file layout. Passwords are never
// exported, so a dump cannot be applied again without filling them in.
func Dump(db *gorm.DB) (File, error) {
	var users []schema.User
	if err := db.Order("username ASC").Find(&users).Error; err != nil {
		return File{}, fmt.Errorf("error listing users: %w", err)
	}

	var projects []schema.Project
	err := db.Order("created_at ASC").
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC") }).
		Preload("Stages.Requests", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC") }).
		Find(&projects).Error
	if err != nil {
		return File{}, fmt.Errorf("error listing projects: %w", err)
	}

	var collaborations []schema.Collaboration
	if err := db.Order("created_at ASC").Find(&collaborations).Error; err != nil {
		return File{}, fmt.Errorf("error listing collaborations: %w", err)
	}

	var observations []schema.Observation
	if err := db.Order("created_at ASC").Find(&observations).Error; err != nil {
		return File{}, fmt.Errorf("error listing observations: %w", err)
	}

	return File{
		Users: lo.Map(users, func(u schema.User, _ int) User {
			return User{
				Username: u.Username,
				Email:    u.Email,
				Role:     string(u.Role),
				Sysadmin: u.IsSysadmin,
				Deleted:  u.DeletedAt != nil,
			}
		}),
		Projects: lo.Map(projects, func(p schema.Project, _ int) Project {
			return Project{
				Id:           p.Id,
				OrgId:        p.OrgId,
				BonitaCaseId: derefString(p.BonitaCaseId),
				Status:       string(p.Status),
				Stages: lo.Map(p.Stages, func(s schema.Stage, _ int) Stage {
					return Stage{
						Id:          s.Id,
						Name:        s.Name,
						Description: derefString(s.Description),
						StartDate:   formatDate(s.StartDate),
						EndDate:     formatDate(s.EndDate),
						Order:       s.Order,
						Requests: lo.Map(s.Requests, func(r schema.Request, _ int) Request {
							return Request{
								Id:          r.Id,
								Type:        string(r.Type),
								Description: r.Description,
								Amount:      formatDecimal(r.Amount, schema.AmountScale),
								Currency:    derefString(r.Currency),
								Quantity:    formatDecimal(r.Quantity, schema.QuantityScale),
								Unit:        derefString(r.Unit),
								Order:       r.Order,
								State:       string(r.State),
							}
						}),
					}
				}),
			}
		}),
		Collaborations: lo.Map(collaborations, func(c schema.Collaboration, _ int) Collaboration {
			return Collaboration{
				Id:        c.Id,
				ProjectId: c.ProjectId,
				RequestId: c.RequestId,
				OrgId:     c.OrgId,
				Amount:    formatDecimal(c.CommittedAmount, schema.AmountScale),
				Currency:  derefString(c.CommittedCurrency),
				Quantity:  formatDecimal(c.CommittedQuantity, schema.QuantityScale),
				Unit:      derefString(c.CommittedUnit),
				Notes:     derefString(c.Notes),
				Status:    string(c.Status),
			}
		}),
		Observations: lo.Map(observations, func(o schema.Observation, _ int) Observation {
			return Observation{
				Id:        o.Id,
				ProjectId: o.ProjectId,
				Content:   o.Content,
				Completed: o.IsCompleted,
			}
		}),
	}, nil
}

func (f File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}
