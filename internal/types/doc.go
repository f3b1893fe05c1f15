/*
Package types defines core data structures used throughout restflow.

# Overview

The types package provides shared type definitions for:
  - Request definitions (Rest, GraphQL, WebSocket)
  - Variable scopes (environments, collections, dynamic variables)
  - Normalized responses and stream events
  - Flows and their execution results
  - History entries

# Request Types

Request is a tagged variant. Kind selects the meaningful fields:

	KindRest      Method, QueryParams, Body
	KindGraphQL   GraphQL (query, variables, operation type, subscription protocol)
	KindWebSocket WebSocket (message, protocols, connection kind)

Headers listed in DisabledHeaders stay in the definition but are never sent.

# Response Types

RequestResponse:
  - Status code (0 when the transport failed), status message
  - Headers, body, size and elapsed time
  - Stream events for WebSocket, GraphQL subscription and SSE executions
  - The SentRequest snapshot

# Flows

Flow steps run in ascending Order. Each step carries an enabled flag and a
continue-on-error flag; FlowExecutionResult holds one FlowStepResult per
visited step.

# Example Structures

Request:

	{
	  "id": "get-user",
	  "kind": "rest",
	  "method": "GET",
	  "url": "{{ API_URL }}/users/{{ userId }}",
	  "auth": {"type": "bearer", "token": "{{ token }}"}
	}

Flow:

	{
	  "id": "signup",
	  "steps": [
	    {"order": 1, "requestId": "create-user", "enabled": true,
	     "extract": {"userId": "id"}},
	    {"order": 2, "requestId": "get-user", "enabled": true}
	  ]
	}
*/
package types
