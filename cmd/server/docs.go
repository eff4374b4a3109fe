package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           ChemLedger API
// @version         0.1.0
// @description     Chemical and logistics auctions, shipments, and the audit log.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
