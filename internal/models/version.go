package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VersionFeatures are client feature flags shipped with the version info.
type VersionFeatures struct {
	AdsEnabled           bool     `bson:"ads_enabled" json:"adsEnabled"`
	NotificationsEnabled bool     `bson:"notifications_enabled" json:"notificationsEnabled"`
	PayoutsEnabled       bool     `bson:"payouts_enabled" json:"payoutsEnabled"`
	NewFeatures          []string `bson:"new_features" json:"newFeatures"`
}

// Version is the singleton app-version/maintenance document consulted by
// the mobile client at startup.
type Version struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"-"`

	MinimumVersion     string `bson:"minimum_version" json:"minimumVersion"`
	MinimumBuildNumber int    `bson:"minimum_build_number" json:"minimumBuildNumber"`
	LatestVersion      string `bson:"latest_version" json:"latestVersion"`
	LatestBuildNumber  int    `bson:"latest_build_number" json:"latestBuildNumber"`

	ForceUpdate   bool   `bson:"force_update" json:"forceUpdate"`
	UpdateMessage string `bson:"update_message" json:"updateMessage"`
	UpdateTitle   string `bson:"update_title" json:"updateTitle"`

	AndroidDownloadURL string `bson:"android_download_url" json:"androidDownloadUrl"`
	IOSDownloadURL     string `bson:"ios_download_url" json:"iosDownloadUrl"`

	MaintenanceMode    bool   `bson:"maintenance_mode" json:"maintenanceMode"`
	MaintenanceMessage string `bson:"maintenance_message" json:"maintenanceMessage"`

	Features VersionFeatures `bson:"features" json:"features"`

	LastUpdated time.Time `bson:"last_updated" json:"lastUpdated"`
	UpdatedBy   string    `bson:"updated_by,omitempty" json:"updatedBy,omitempty"`
}

// DefaultVersion is the document created when none exists yet.
func DefaultVersion() *Version {
	return &Version{
		MinimumVersion:     "1.0.0",
		MinimumBuildNumber: 1,
		LatestVersion:      "1.0.0",
		LatestBuildNumber:  1,
		ForceUpdate:        false,
		UpdateMessage:      "A new version is available with bug fixes and improvements.",
		UpdateTitle:        "Update Available",
		AndroidDownloadURL: "https://play.google.com/store/apps/details?id=com.example.learn_earn_mobile",
		IOSDownloadURL:     "https://apps.apple.com/app/learn-earn/id123456789",
		MaintenanceMode:    false,
		MaintenanceMessage: "The app is currently under maintenance. Please try again later.",
		Features: VersionFeatures{
			AdsEnabled:           true,
			NotificationsEnabled: true,
			PayoutsEnabled:       true,
			NewFeatures:          []string{},
		},
		LastUpdated: time.Now(),
	}
}

// VersionPatch is a partial admin update; nil fields are left unchanged.
type VersionPatch struct {
	MinimumVersion     *string          `json:"minimumVersion,omitempty"`
	MinimumBuildNumber *int             `json:"minimumBuildNumber,omitempty"`
	LatestVersion      *string          `json:"latestVersion,omitempty"`
	LatestBuildNumber  *int             `json:"latestBuildNumber,omitempty"`
	ForceUpdate        *bool            `json:"forceUpdate,omitempty"`
	UpdateMessage      *string          `json:"updateMessage,omitempty"`
	UpdateTitle        *string          `json:"updateTitle,omitempty"`
	AndroidDownloadURL *string          `json:"androidDownloadUrl,omitempty"`
	IOSDownloadURL     *string          `json:"iosDownloadUrl,omitempty"`
	MaintenanceMode    *bool            `json:"maintenanceMode,omitempty"`
	MaintenanceMessage *string          `json:"maintenanceMessage,omitempty"`
	Features           *VersionFeatures `json:"features,omitempty"`
}
