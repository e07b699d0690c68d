// Package webapi serves hamctl to browser clients.
//
// REST endpoints:
//
//	GET    /api/version                 API and build version
//	GET    /api/devices                 known devices
//	GET    /api/states                  live device states
//	POST   /api/radios                  {"host","port","name"} connect a radio
//	POST   /api/devices/{id}/connect    connect a discovered radio
//	DELETE /api/radios/{id}             disconnect a manual radio
//	POST   /api/rotator/target          {"azimuth"} turn the rotator
//	POST   /api/rotator/stop            halt the rotator
//
// GET /ws upgrades to a WebSocket. An optional ?api=major.minor query is
// rejected unless its major version matches the server's. The server first sends a snapshot frame,
// then every event as an event frame. Clients send requests with an "op"
// (connect, disconnect, setRotatorTarget, stopRotator, listDevices,
// listStates) and receive a result frame carrying the same "id".
package webapi
