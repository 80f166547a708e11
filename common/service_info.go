package common

import (
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	serviceInstance     string
	serviceInstanceOnce sync.Once
)

func GetServiceName() string {
	name := os.Getenv("SERVICE_NAME")
	if name == "" {
		name = "beacon"
	}
	return name
}

func GetServiceInstance() string {
	serviceInstanceOnce.Do(func() {
		serviceInstance = os.Getenv("HOSTNAME")
		if serviceInstance == "" {
			serviceInstance = uuid.New().String()
		}
	})
	return serviceInstance
}
