package main

import "testing"

func TestHostnameOrDefault_NeverEmpty(t *testing.T) {
	if hostnameOrDefault() == "" {
		t.Fatal("expected a non-empty default source identity")
	}
}
