package model

import "time"

// Ticket statuses and priorities accepted by the support endpoints.
const (
    TicketNew        = "new"
    TicketInProgress = "in_progress"
    TicketResolved   = "resolved"
    TicketClosed     = "closed"

    PriorityLow    = "low"
    PriorityMedium = "medium"
    PriorityHigh   = "high"
    PriorityUrgent = "urgent"
)

// Ticket mirrors the `support_tickets` table.  Reference is a UUID handed
// to the user so tickets can be quoted without exposing sequential ids.
type Ticket struct {
    ID         uint64    // support_tickets.id
    Reference  string    // support_tickets.reference
    UserID     uint64    // support_tickets.user_id
    Subject    string    // support_tickets.subject
    Message    string    // support_tickets.message
    Status     string    // support_tickets.status
    Priority   string    // support_tickets.priority
    AssignedTo *uint64   // support_tickets.assigned_to (nullable)
    CreatedAt  time.Time // support_tickets.created_at
    UpdatedAt  time.Time // support_tickets.updated_at

    // Joined from users for list views.
    UserEmail string
    UserName  string
}

// TicketResponse is one reply in a ticket thread.
type TicketResponse struct {
    ID        uint64    // support_responses.id
    TicketID  uint64    // support_responses.ticket_id
    UserID    uint64    // support_responses.user_id
    Message   string    // support_responses.message
    IsStaff   bool      // support_responses.is_staff
    CreatedAt time.Time // support_responses.created_at

    UserName string
}

// Preferences holds dashboard display settings for one user.
type Preferences struct {
    UserID               uint64
    Theme                string // light | dark | system
    Layout               string // default | compact | spacious
    ChartStyle           string // default | minimal | colorful
    SidebarCollapsed     bool
    NotificationsEnabled bool
    UpdatedAt            time.Time
}

// DefaultPreferences is returned for users who never saved any.
func DefaultPreferences(userID uint64) Preferences {
    return Preferences{
        UserID:               userID,
        Theme:                "light",
        Layout:               "default",
        ChartStyle:           "default",
        SidebarCollapsed:     false,
        NotificationsEnabled: true,
    }
}
