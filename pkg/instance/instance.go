package instance

import "github.com/angelmondragon/orderengine/pkg/env"

// GetID identifies this process in logs. Containers set HOSTNAME; an explicit
// ORDERENGINE_INSTANCE_ID wins.
func GetID() string {
	return env.First("local", "ORDERENGINE_INSTANCE_ID", "HOSTNAME")
}
