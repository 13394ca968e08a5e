// Package config loads the financemonitor YAML configuration.
//
// Values may reference environment variables as ${VAR}; a .env file in the
// working directory is loaded first. Without an explicit path the embedded
// default.yaml is used, which maps the environment variables the Cloud Run
// services are deployed with.
package config
