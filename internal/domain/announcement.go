package domain

import "time"

// Stage enumerates the lifecycle phase an announcement refers to.
type Stage string

const (
	StageInscription  Stage = "inscription"
	StageResult       Stage = "result"
	StageInterview    Stage = "interview"
	StageHomologation Stage = "homologation"
)

// Modality separates extension calls from academic-support calls.
type Modality string

const (
	ModalityExtension       Modality = "extension"
	ModalityAcademicSupport Modality = "academic_support"
)

// Announcement is a published call (edital) identified by its link.
type Announcement struct {
	ID                   string
	Title                string
	Link                 string
	PublishedAt          *time.Time
	RegistrationDeadline *time.Time
	ResultDate           *time.Time
	Stage                Stage
	Modality             Modality
}

// Listing is an announcement entry discovered on a listing page, before its documents are read.
type Listing struct {
	Title       string
	Link        string
	Stage       Stage
	Modality    Modality
	PublishedAt *time.Time
	Documents   []DocumentRef
}

// DocumentRole tells apart the main call document from per-unit project documents.
type DocumentRole string

const (
	DocumentMain    DocumentRole = "main"
	DocumentProject DocumentRole = "project"
)

// DocumentRef points to an attachment of an announcement page.
type DocumentRef struct {
	URL     string
	Role    DocumentRole
	OrgUnit string
}

// Document is a downloaded attachment reduced to its text layer.
type Document struct {
	Ref  DocumentRef
	Text string
}

// NotificationKind distinguishes the events users are told about.
type NotificationKind string

const (
	NotificationNewAnnouncement NotificationKind = "new_announcement"
	NotificationResult          NotificationKind = "result"
)

// NotificationRecord remembers that an announcement was already announced for a kind.
type NotificationRecord struct {
	AnnouncementID string
	Kind           NotificationKind
	Audience       string
	Status         string
	CreatedAt      time.Time
}
