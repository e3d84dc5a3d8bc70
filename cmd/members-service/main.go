package main

import (
	"log"

	"threesisters/members-service/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("members service failed: %v", err)
	}
}
