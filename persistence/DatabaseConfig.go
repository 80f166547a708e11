package persistence

import (
	"database/sql"
	"errors"
	"os"
	"strings"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

// ParseDatabaseConfigFromEnv reads DATABASE_URL in the form
// "<driver>://<driver-args>", e.g. "mysql://root:root@(127.0.0.1:3306)/beacon?charset=utf8mb4&parseTime=True&loc=Local".
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	databaseURL := os.ExpandEnv(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return nil, errors.New("environment variable DATABASE_URL is not found or empty")
	}
	idx := strings.Index(databaseURL, "://")
	if idx <= 0 || idx+3 >= len(databaseURL) {
		return nil, errors.New("invalid DATABASE_URL: '" + databaseURL + "'")
	}
	return &DatabaseConfig{DriverType: databaseURL[0:idx], DriverArgs: databaseURL[idx+3:]}, nil
}

// PrepareMysqlDatabase creates the target database when absent. The driver
// args must carry a database name: "user:pass@(host:port)/dbname?...".
func PrepareMysqlDatabase(driverArgs string) error {
	slash := strings.Index(driverArgs, "/")
	if slash < 0 {
		return errors.New("database name is not found in driver args")
	}
	serverArgs := driverArgs[0 : slash+1]
	databaseName := driverArgs[slash+1:]
	if q := strings.Index(databaseName, "?"); q >= 0 {
		databaseName = databaseName[0:q]
	}
	if databaseName == "" {
		return errors.New("database name is not found in driver args")
	}

	db, err := sql.Open("mysql", serverArgs)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS " + databaseName +
		" DEFAULT CHARACTER SET utf8mb4 DEFAULT COLLATE utf8mb4_bin")
	return err
}
