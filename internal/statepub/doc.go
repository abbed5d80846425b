// Package statepub publishes drive state to the MQTT broker.
//
// Publisher observes the dispatcher. After every dispatch it publishes one
// retained message per drive to {prefix}/state/{address} and one event to
// {prefix}/event/dispatch:
//
//	am43/state/02:4e:30:1a:c4:9f  {"address":"02:4e:30:1a:c4:9f","name":"left",...}
//	am43/event/dispatch           {"dispatch_id":"...","action":"open","status":"OK",...}
//
// State messages merge across dispatches: a status query updates the
// battery, position and light values it received and keeps the previous
// ones for values that did not arrive. Commands update last_command.
package statepub
