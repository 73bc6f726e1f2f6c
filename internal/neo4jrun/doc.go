// Package neo4jrun executes compiled statements against Neo4j.
//
// Service is the narrow driver capability; DriverService implements it
// over neo4j.ExecuteQuery and the mocks package holds its gomock double.
// Integration tests start a Neo4j container and need the integration
// build tag.
package neo4jrun
