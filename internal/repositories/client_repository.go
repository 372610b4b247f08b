package repositories

import (
	"errors"

	"capgen_backend/internal/models"

	"gorm.io/gorm"
)

var ErrClientNotFound = errors.New("client not found")

type ClientRepository interface {
	Create(client *models.Client) error
	Update(client *models.Client) error
	Delete(clientID, userID string) error

	// FindByIDAndUser: клиент виден только своему владельцу
	FindByIDAndUser(clientID, userID string) (*models.Client, error)
	ListByUser(userID string) ([]models.Client, error)
	CountByUser(userID string) (int64, error)
}

type ClientRepositoryImpl struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &ClientRepositoryImpl{db: db}
}

func (r *ClientRepositoryImpl) Create(client *models.Client) error {
	return r.db.Create(client).Error
}

func (r *ClientRepositoryImpl) Update(client *models.Client) error {
	return r.db.Save(client).Error
}

func (r *ClientRepositoryImpl) Delete(clientID, userID string) error {
	result := r.db.Where("id = ? AND user_id = ?", clientID, userID).Delete(&models.Client{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (r *ClientRepositoryImpl) FindByIDAndUser(clientID, userID string) (*models.Client, error) {
	var client models.Client
	err := r.db.First(&client, "id = ? AND user_id = ?", clientID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepositoryImpl) ListByUser(userID string) ([]models.Client, error) {
	var clients []models.Client
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&clients).Error
	return clients, err
}

func (r *ClientRepositoryImpl) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Client{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
