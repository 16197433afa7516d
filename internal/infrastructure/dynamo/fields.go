package dynamo

// DynamoDB attribute and index names shared by the repos and Bootstrap.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	attrUserID        = "user_id"
	attrUsernameLower = "username_lower"
	attrEmailLower    = "email_lower"
	attrUpdatedAt     = "updated_at"
	attrCodeKey       = "code_key"
	attrTTL           = "ttl"

	indexUsernameLower = "username_lower-index"
	indexEmailLower    = "email_lower-index"
)
