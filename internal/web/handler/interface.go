package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
)

// Service is the interface for a web handler service.
type Service interface {
	Init(router fiber.Router, cfg *config.Config, db *gorm.DB)
}
