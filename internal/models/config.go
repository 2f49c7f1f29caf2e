// Package models contains the data structures used throughout nestbackup.
package models

// JobKind identifies one of the built-in job types.
type JobKind string

// The closed set of job kinds. Unknown values are rejected at config load time.
const (
	JobSync     JobKind = "sync"
	JobDatabase JobKind = "database"
	JobSMTP     JobKind = "smtp"
)

// DatabaseEngine selects the dump/restore toolchain for a database job.
type DatabaseEngine string

// Supported database engines, derived from the db_uri scheme.
const (
	EnginePostgres DatabaseEngine = "postgresql"
	EngineMySQL    DatabaseEngine = "mysql"
)

// Credentials holds the object storage credentials and endpoint for a job.
// The access keys are only ever passed to external commands via the
// environment, never on the command line.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string // optional, for S3-compatible stores
}

// JobSpec is the fully resolved configuration for one section: the section's
// own options merged over the DEFAULT section. Immutable once constructed.
type JobSpec struct {
	Name     string // section name
	Kind     JobKind
	Hostname string
	Bucket   string
	Creds    Credentials

	// Exactly one of these is non-nil, matching Kind.
	Sync     *SyncSettings
	Database *DatabaseSettings
	SMTP     *SMTPSettings
}

// SyncSettings holds the options of a sync job.
type SyncSettings struct {
	LocalPath  string
	RemotePath string   // defaults to the basename of LocalPath
	ExtraArgs  []string // extra flags for the sync command (aws_extra_args)
}

// DatabaseSettings holds the options of a database job, with db_uri already
// parsed into its parts.
type DatabaseSettings struct {
	URI       string
	Engine    DatabaseEngine
	Host      string
	Port      string // empty means the engine default
	Username  string
	Password  string
	Database  string
	Retention int // snapshots to keep; <= 0 disables pruning
}

// SMTPSettings holds the options of an smtp report job.
type SMTPSettings struct {
	Server     string
	Port       int
	SSL        bool
	Username   string
	Password   string
	Sender     string // defaults to Username
	Recipients []string
	Subject    string // defaults to "Backup report: <hostname>"
}
