// Package domain defines the persistence models for users, restaurants,
// matches, bookings and their derived analytics. These types are mapped with
// GORM and form the core data layer of the match-and-booking backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// User is the identity record the core reads: active flag, role and the
// follow sets used as compatibility signals. Owned by the identity subsystem.
type User struct {
	ID         int64     `json:"id"          gorm:"primaryKey;autoIncrement"`
	Email      string    `json:"email"       gorm:"type:varchar(255);not null;uniqueIndex"`
	Role       string    `json:"role"        gorm:"type:varchar(16);not null;default:'user';check:role IN ('user','admin')"`
	IsActive   bool      `json:"is_active"   gorm:"not null;index"`
	IsVerified bool      `json:"is_verified" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Profile     *UserProfile     `json:"profile,omitempty"     gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Preferences *UserPreferences `json:"preferences,omitempty" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// UserProfile carries the display and demographic fields used by the
// preference filters.
type UserProfile struct {
	UserID      int64  `json:"user_id"      gorm:"primaryKey;autoIncrement:false"`
	DisplayName string `json:"display_name" gorm:"type:varchar(100);not null"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"       gorm:"type:varchar(20)"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string { return "user_profiles" }

// UserPreferences holds who a user wants to meet and what they care about.
//
// Fields:
//   - MinAge / MaxAge: inclusive age window; zero disables a bound.
//   - PreferredGender: empty admits any gender.
//   - Interests / Values: free-form tags compared for the compatibility score.
type UserPreferences struct {
	UserID          int64                       `json:"user_id"          gorm:"primaryKey;autoIncrement:false"`
	MinAge          int                         `json:"min_age"`
	MaxAge          int                         `json:"max_age"`
	PreferredGender string                      `json:"preferred_gender" gorm:"type:varchar(20)"`
	Interests       datatypes.JSONSlice[string] `json:"interests"`
	Values          datatypes.JSONSlice[string] `json:"values"           gorm:"column:value_tags"`
}

// TableName returns the database table name for UserPreferences.
func (UserPreferences) TableName() string { return "user_preferences" }

// UserFollow records that FollowerID follows FollowedID.
type UserFollow struct {
	FollowerID int64 `gorm:"primaryKey;autoIncrement:false"`
	FollowedID int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt  time.Time
}

// TableName returns the database table name for UserFollow.
func (UserFollow) TableName() string { return "user_follows" }

// RestaurantFollow records that a user follows a restaurant from either
// namespace.
type RestaurantFollow struct {
	UserID        int64         `gorm:"primaryKey;autoIncrement:false"`
	RestaurantRef RestaurantRef `gorm:"primaryKey;type:varchar(128)"`
	CreatedAt     time.Time
}

// TableName returns the database table name for RestaurantFollow.
func (RestaurantFollow) TableName() string { return "restaurant_follows" }

// TimePreference is a free-time slot a user has marked as available.
// SlotStart is stored truncated to the hour in UTC.
type TimePreference struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;index:idx_time_pref_user"`
	SlotStart time.Time `gorm:"not null;index"`
	Active    bool      `gorm:"not null"`
}

// TableName returns the database table name for TimePreference.
func (TimePreference) TableName() string { return "time_preferences" }

// Restaurant is a row of the operator-curated catalog. Its integer id is the
// payload of an Internal RestaurantRef.
type Restaurant struct {
	ID          int64     `json:"id"           gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name"         gorm:"type:varchar(255);not null"`
	CuisineType string    `json:"cuisine_type" gorm:"type:varchar(64)"`
	Address     string    `json:"address"      gorm:"type:varchar(255)"`
	PriceRange  int       `json:"price_range"  gorm:"not null;default:2;check:price_range BETWEEN 1 AND 4"`
	Rating      float64   `json:"rating"`
	IsActive    bool      `json:"is_active"    gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Restaurant.
func (Restaurant) TableName() string { return "restaurants" }

// Profile projects a catalog row into display data.
func (r Restaurant) Profile() *RestaurantProfile {
	return &RestaurantProfile{
		Ref:       Internal(r.ID),
		Name:      r.Name,
		Cuisine:   r.CuisineType,
		Address:   r.Address,
		PriceTier: r.PriceRange,
		Rating:    r.Rating,
		Source:    SourceCatalog,
	}
}

// Profile sources, recorded on resolved profiles for logs and metrics.
const (
	SourceCatalog     = "catalog"
	SourceCache       = "cache"
	SourceProvider    = "provider"
	SourceSeed        = "seed"
	SourcePlaceholder = "placeholder"
)

// RestaurantProfile is resolved display data for a RestaurantRef. It is never
// authoritative for External refs and is safe to drop from the cache.
type RestaurantProfile struct {
	Ref       RestaurantRef `json:"ref"`
	Name      string        `json:"name"`
	Cuisine   string        `json:"cuisine,omitempty"`
	Address   string        `json:"address,omitempty"`
	PriceTier int           `json:"price_tier,omitempty"`
	Rating    float64       `json:"rating,omitempty"`
	Source    string        `json:"source,omitempty"`
}

// Match is a date request between two users at a restaurant and time.
//
// Fields:
//   - UserA: the requester. UserB: the candidate.
//   - PairLow / PairHigh: min/max of the two user ids. Together with
//     ProposedAt they form the idempotency key, enforced by the partial unique
//     index ux_matches_pair_slot on non-declined rows (see repo.AutoMigrate).
//   - ProposedAt: normalised to UTC, truncated to the second.
//   - TableID: optional table identifier at the restaurant.
//   - RespondedAt: set when the candidate accepts or declines.
//
// Matches are never deleted; Status carries the history.
type Match struct {
	ID                 int64         `json:"id"                  gorm:"primaryKey;autoIncrement"`
	UserA              int64         `json:"user_a"              gorm:"not null;index:idx_match_user_a"`
	UserB              int64         `json:"user_b"              gorm:"not null;index:idx_match_user_b"`
	PairLow            int64         `json:"-"                   gorm:"not null"`
	PairHigh           int64         `json:"-"                   gorm:"not null"`
	RestaurantRef      RestaurantRef `json:"restaurant_ref"      gorm:"type:varchar(128);not null"`
	TableID            *int64        `json:"table_id,omitempty"`
	ProposedAt         time.Time     `json:"proposed_at"         gorm:"not null"`
	Status             MatchStatus   `json:"status"              gorm:"type:varchar(16);not null;index;check:status IN ('PENDING','ACCEPTED','DECLINED','EXPIRED','COMPLETED')"`
	CompatibilityScore int           `json:"compatibility_score" gorm:"not null;check:compatibility_score BETWEEN 0 AND 100"`
	CreatedAt          time.Time     `json:"created_at"          gorm:"index"`
	RespondedAt        *time.Time    `json:"responded_at,omitempty"`
}

// TableName returns the database table name for Match.
func (Match) TableName() string { return "matches" }

// HasParty reports whether userID is one of the two users of the match.
func (m Match) HasParty(userID int64) bool {
	return userID == m.UserA || userID == m.UserB
}

// Other returns the counterpart of userID.
func (m Match) Other(userID int64) int64 {
	if userID == m.UserA {
		return m.UserB
	}
	return m.UserA
}

// Booking is the restaurant-facing commitment derived from an accepted Match.
// A Match yields at most one Booking (unique MatchID).
type Booking struct {
	ID               int64         `json:"id"                         gorm:"primaryKey;autoIncrement"`
	MatchID          *int64        `json:"match_id,omitempty"         gorm:"uniqueIndex:ux_booking_match"`
	RestaurantRef    RestaurantRef `json:"restaurant_ref"             gorm:"type:varchar(128);not null;index:idx_booking_restaurant,priority:1"`
	UserA            int64         `json:"user_a"                     gorm:"not null"`
	UserB            int64         `json:"user_b"                     gorm:"not null"`
	BookingAt        time.Time     `json:"booking_at"                 gorm:"not null"`
	Status           BookingStatus `json:"status"                     gorm:"type:varchar(16);not null;index;check:status IN ('pending','confirmed','completed','cancelled')"`
	PartySize        int           `json:"party_size"                 gorm:"not null;default:2;check:party_size > 0"`
	SpecialRequests  *string       `json:"special_requests,omitempty" gorm:"type:text"`
	ConfirmationCode string        `json:"confirmation_code"          gorm:"type:varchar(16);not null;uniqueIndex"`
	CreatedAt        time.Time     `json:"created_at"                 gorm:"index:idx_booking_restaurant,priority:2"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Booking.
func (Booking) TableName() string { return "bookings" }

// HasParty reports whether userID is one of the two diners.
func (b Booking) HasParty(userID int64) bool {
	return userID == b.UserA || userID == b.UserB
}

// Rating is one diner's 1-5 score for a completed booking. A user may rate a
// booking once.
type Rating struct {
	ID            int64         `json:"id"             gorm:"primaryKey;autoIncrement"`
	BookingID     int64         `json:"booking_id"     gorm:"not null;uniqueIndex:ux_rating_booking_user,priority:1"`
	UserID        int64         `json:"user_id"        gorm:"not null;uniqueIndex:ux_rating_booking_user,priority:2"`
	RestaurantRef RestaurantRef `json:"restaurant_ref" gorm:"type:varchar(128);not null;index"`
	Value         int           `json:"rating"         gorm:"column:rating;not null;check:rating BETWEEN 1 AND 5"`
	Review        string        `json:"review"         gorm:"type:text"`
	CreatedAt     time.Time     `json:"created_at"`

	Booking Booking `json:"-" gorm:"foreignKey:BookingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Rating.
func (Rating) TableName() string { return "booking_ratings" }

// AnalyticsSnapshot is a persisted AnalyticsBucket for one restaurant and one
// UTC day. It is derived data and may be recomputed at any time.
type AnalyticsSnapshot struct {
	ID            int64         `gorm:"primaryKey;autoIncrement"`
	RestaurantRef RestaurantRef `gorm:"type:varchar(128);not null;uniqueIndex:ux_snapshot_restaurant_day,priority:1"`
	Day           time.Time     `gorm:"not null;uniqueIndex:ux_snapshot_restaurant_day,priority:2"`
	Total         int64         `gorm:"not null"`
	Confirmed     int64         `gorm:"not null"`
	Completed     int64         `gorm:"not null"`
	Cancelled     int64         `gorm:"not null"`
	AverageRating float64
	UpdatedAt     time.Time
}

// TableName returns the database table name for AnalyticsSnapshot.
func (AnalyticsSnapshot) TableName() string { return "analytics_snapshots" }
