package main

//go:generate swag init -g cmd/eventsync/main.go -o docs

// @title           Event Sync API
// @version         0.1.0
// @description     Business event ingestion: pipeline controls, source states, feature switches and the event listing.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
