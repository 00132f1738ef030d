package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/veripoint/identity-gateway/internal/catalog_service/domain"
	catalogRepoImpl "github.com/veripoint/identity-gateway/internal/catalog_service/repository/postgres"
	"github.com/veripoint/identity-gateway/internal/platform/config"
	"github.com/veripoint/identity-gateway/internal/platform/database"
	"github.com/veripoint/identity-gateway/internal/platform/logger"
)

const serviceName = "seeder"

func intPtr(v int) *int { return &v }

// Seeds or updates the service price list. Safe to re-run: existing rows
// keep their identity and get the current price.
func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel)

	ctx := context.Background()
	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	services := []domain.Service{
		// Identity (NIN)
		{Code: domain.TypeNINVerification, Name: "NIN Verification", Price: 100.00, Description: "Verify using NIN Number.", IsActive: true},
		{Code: domain.TypeNINSearchByPhone, Name: "NIN By Phone", Price: 150.00, Description: "Retrieve NIN using Phone Number.", IsActive: true},

		// VNIN services
		{Code: domain.TypeVNINSlip, Name: "VNIN Slip Generation", Price: 200.00, Description: "Generate Standard VNIN Slip PDF.", IsActive: true},
		{Code: domain.TypeVNINToNIBSS, Name: "VNIN to NIBSS", Price: 500.00, Description: "Validate VNIN for Bank Account.", IsActive: true},

		// NIN slip PDF types
		{Code: domain.TypeNINSlipPremium, ServiceCode: intPtr(401), Name: "NIN Slip (Premium)", Price: 1000.00, Description: "Generate Premium Design PDF.", IsActive: true},
		{Code: domain.TypeNINSlipStandard, ServiceCode: intPtr(402), Name: "NIN Slip (Standard)", Price: 700.00, Description: "Generate Standard Design PDF.", IsActive: true},
		{Code: domain.TypeNINSlipRegular, ServiceCode: intPtr(403), Name: "NIN Slip (Regular)", Price: 500.00, Description: "Generate Regular Design PDF.", IsActive: true},

		// Validation services
		{Code: domain.TypeNINValidationNoRecord, ServiceCode: intPtr(329), Name: "NIN Validation (No Record)", Price: 350.00, Description: `Validate NIN showing "No Record Found".`, IsActive: true},
		{Code: domain.TypeNINValidationUpdateRecord, ServiceCode: intPtr(330), Name: "NIN Validation (Update Record)", Price: 500.00, Description: "Validate NIN after detail updates.", IsActive: true},
		{Code: domain.TypeNINValidationVNIN, ServiceCode: intPtr(331), Name: "V-NIN Validation", Price: 450.00, Description: "Validate Virtual NIN.", IsActive: true},

		// NIN modification
		{Code: domain.TypeNINModificationName, ServiceCode: intPtr(501), Name: "NIN Modification: Change of Name", Price: 15000.00, Description: "Correction of Name on NIN Database", IsActive: true},
		{Code: domain.TypeNINModificationPhone, ServiceCode: intPtr(502), Name: "NIN Modification: Change of Phone", Price: 5000.00, Description: "Update Phone Number on NIN Database", IsActive: true},
		{Code: domain.TypeNINModificationAddress, ServiceCode: intPtr(503), Name: "NIN Modification: Change of Address", Price: 8000.00, Description: "Update Residential Address on NIN Database", IsActive: true},

		// Other identity
		{Code: domain.TypeNINPersonalization, Name: "NIN Personalization", Price: 1000.00, Description: "Personalize NIN Data.", IsActive: true},
		{Code: domain.TypeIPEClearance, Name: "IPE Clearance", Price: 1500.00, Description: "Clear IPE Issues.", IsActive: true},

		// Catalog-only rows: priced and listed, but with no submission
		// endpoint wired; they stay inactive until an integration exists.
		{Code: "BVN_VERIFICATION", Name: "BVN Verification", Price: 100.00, Description: "Verify BVN Details.", IsActive: false},
		{Code: "BVN_RETRIEVAL", Name: "BVN Retrieval", Price: 150.00, Description: "Recover Lost BVN.", IsActive: false},
		{Code: "BVN_MODIFICATION", Name: "BVN Modification", Price: 2500.00, Description: "Update BVN Details.", IsActive: false},
		{Code: "ANDROID_BVN_ENROLLMENT", Name: "Android BVN Enrollment", Price: 3000.00, Description: "Enroll via Android Device.", IsActive: false},
		{Code: "AIRTIME", Name: "Airtime VTU", Price: 0.00, Description: "Airtime Top-up.", IsActive: false},
		{Code: "DATA", Name: "Data Bundles", Price: 0.00, Description: "Internet Data Bundles.", IsActive: false},
		{Code: "CAC_REGISTRATION", Name: "CAC Registration", Price: 15000.00, Description: "Business Name Registration.", IsActive: false},
		{Code: "JTB_TIN_REGISTRATION", Name: "TIN Registration", Price: 500.00, Description: "Joint Tax Board TIN.", IsActive: false},
		{Code: "JAMB_SERVICES", Name: "JAMB Services", Price: 4700.00, Description: "UTME/DE Registration.", IsActive: false},
		{Code: "EXAM_PIN_WAEC", Name: "WAEC Pin", Price: 3500.00, Description: "WAEC Result Checker.", IsActive: false},
		{Code: "EXAM_PIN_NECO", Name: "NECO Pin", Price: 1200.00, Description: "NECO Result Checker.", IsActive: false},
		{Code: "EXAM_PIN_NABTEB", Name: "NABTEB Pin", Price: 1000.00, Description: "NABTEB Result Checker.", IsActive: false},
		{Code: "EXAM_PIN_JAMB", Name: "JAMB Pin", Price: 4700.00, Description: "JAMB Result Checker.", IsActive: false},
	}

	repo := catalogRepoImpl.NewPgServiceRepository()
	for i := range services {
		if err := repo.Upsert(ctx, dbPool, &services[i]); err != nil {
			appLogger.Error("Failed to seed service", "code", services[i].Code, "error", err)
			os.Exit(1)
		}
	}
	appLogger.Info("Service catalog seeded", "count", len(services))
}
