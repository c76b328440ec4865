package services

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/db"
	"greendrake/dunning/internal/models"
	"greendrake/dunning/internal/utils"
)

// IOrgService resolves the sender identity shown in reminders.
type IOrgService interface {
	GetContactInfo(ctx context.Context, orgIDs []string) (map[string]models.OrgContactInfo, error)
}

// orgService implements IOrgService.
type orgService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewOrgService creates a new OrgService.
func NewOrgService(db *mongo.Database, cfg *config.Config) IOrgService {
	return &orgService{
		db:  db,
		cfg: cfg,
	}
}

// GetContactInfo loads contact info for all given orgs in one query. Every
// requested id is present in the result; unknown orgs get the default business name.
func (s *orgService) GetContactInfo(ctx context.Context, orgIDs []string) (map[string]models.OrgContactInfo, error) {
	result := make(map[string]models.OrgContactInfo, len(orgIDs))
	if len(orgIDs) == 0 {
		return result, nil
	}
	for _, id := range orgIDs {
		result[id] = models.OrgContactInfo{ID: id, Name: s.cfg.DunningDefaultBusinessName}
	}

	cursor, err := s.db.Collection(db.OrganizationsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": orgIDs}})
	if err != nil {
		return result, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer cursor.Close(ctx)

	var orgs []models.Organization
	if err := cursor.All(ctx, &orgs); err != nil {
		return result, fmt.Errorf("failed to decode organizations: %w", err)
	}
	for _, org := range orgs {
		result[org.ID] = ContactInfoFor(org, s.cfg.DunningDefaultBusinessName)
	}
	return result, nil
}

// ContactInfoFor derives the contact info of one organization.
func ContactInfoFor(org models.Organization, defaultName string) models.OrgContactInfo {
	name := strings.TrimSpace(org.Name)
	if name == "" {
		name = defaultName
	}
	phone := utils.NormalizeDutchPhone(org.WhatsAppBusinessNumber)
	if phone == "" {
		phone = utils.NormalizeDutchPhone(org.ControlNumber)
	}
	return models.OrgContactInfo{ID: org.ID, Name: name, Phone: phone}
}
