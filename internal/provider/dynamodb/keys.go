package dynamodb

// PK/SK prefix constants.
const (
	prefixProfile = "PROFILE#"
	prefixType    = "TYPE#"

	skConfig = "CONFIG"

	gsi1Name = "GSI1"
)

func profilePK(id string) string { return prefixProfile + id }

func configSK() string { return skConfig }

func profileTypeKey() string { return prefixType + "profile" }
