// Package docs holds the OpenAPI document served under /swagger. It follows
// the layout swag init produces from the handler annotations in main.go and
// internal/api; keep the two in sync when routes change.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/register": {
            "post": {
                "description": "Creates an unverified account and emails a verification link. Accepts JSON or multipart/form-data with an optional photo file.",
                "consumes": ["application/json", "multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Register a new user",
                "parameters": [
                    {"description": "Registration data (JSON)", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/types.RegisterRequest"}},
                    {"type": "file", "description": "Profile photo (multipart)", "name": "photo", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/types.RegisterResponse"}},
                    "400": {"description": "Invalid input or email already registered", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            }
        },
        "/verify-email": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Verify email address",
                "parameters": [
                    {"type": "string", "description": "Verification token", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UserResponse"}},
                    "400": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            }
        },
        "/verification-link": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Request a new verification link",
                "parameters": [
                    {"description": "Account email", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.EmailRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            }
        },
        "/login": {
            "post": {
                "description": "Exchanges verified credentials for a session token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.LoginResponse"}},
                    "400": {"description": "Invalid credentials or email not verified", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            }
        },
        "/reset-password": {
            "post": {
                "description": "Always answers with the same message whether or not the account exists.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Request a password reset link",
                "parameters": [
                    {"description": "Account email", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.EmailRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            }
        },
        "/reset-password/{token}": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Set a new password",
                "parameters": [
                    {"type": "string", "description": "Reset token", "name": "token", "in": "path", "required": true},
                    {"description": "New password", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ResetPasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Response"}},
                    "400": {"description": "Invalid input or token", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            }
        },
        "/profile": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Retrieves the authenticated user's profile information.",
                "produces": ["application/json"],
                "tags": ["User"],
                "summary": "Get own profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UserResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "404": {"description": "User Not Found", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Partially updates name, email, password and photo. JSON or multipart/form-data.",
                "consumes": ["application/json", "multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["User"],
                "summary": "Update own profile",
                "parameters": [
                    {"description": "Fields to change (JSON)", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/types.UpdateProfileRequest"}},
                    {"type": "file", "description": "New profile photo (multipart)", "name": "photo", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UserResponse"}},
                    "400": {"description": "Invalid Input", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            }
        },
        "/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "List users",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UsersResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Get a user by id",
                "parameters": [
                    {"type": "string", "description": "User ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UserResponse"}},
                    "400": {"description": "Invalid id", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Partially updates name, email, role and photo of the given user.",
                "consumes": ["application/json", "multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Update any user (admin)",
                "parameters": [
                    {"type": "string", "description": "User ID (UUID)", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change (JSON)", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/types.AdminUpdateUserRequest"}},
                    {"type": "file", "description": "New profile photo (multipart)", "name": "photo", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UserResponse"}},
                    "400": {"description": "Invalid input or role", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Delete a user (admin)",
                "parameters": [
                    {"type": "string", "description": "User ID (UUID)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Response"}},
                    "400": {"description": "Invalid id", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/types.ErrorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorBody"}}
                }
            }
        }
    },
    "definitions": {
        "types.Role": {
            "type": "string",
            "enum": ["user", "admin"],
            "x-enum-varnames": ["RoleUser", "RoleAdmin"]
        },
        "types.PublicUser": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "email": {"type": "string", "example": "jane@example.com"},
                "id": {"type": "string", "example": "d290f1ee-6c54-4b01-90e6-d701748f0851"},
                "is_verified": {"type": "boolean", "example": true},
                "name": {"type": "string", "example": "Jane Doe"},
                "photo_url": {"type": "string", "example": "https://cdn.example.com/profile-photos/abc.png"},
                "role": {"allOf": [{"$ref": "#/definitions/types.Role"}], "example": "user"},
                "updated_at": {"type": "string"}
            }
        },
        "types.RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "jane@example.com"},
                "name": {"type": "string", "example": "Jane Doe"},
                "password": {"type": "string", "example": "secret1"}
            }
        },
        "types.LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "jane@example.com"},
                "password": {"type": "string", "example": "secret1"}
            }
        },
        "types.EmailRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "jane@example.com"}
            }
        },
        "types.ResetPasswordRequest": {
            "type": "object",
            "properties": {
                "newPassword": {"type": "string", "example": "n3wSecret"}
            }
        },
        "types.UpdateProfileRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "jane.d@example.com"},
                "name": {"type": "string", "example": "Jane D."},
                "password": {"type": "string", "example": "an0therSecret"}
            }
        },
        "types.AdminUpdateUserRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "jane.d@example.com"},
                "name": {"type": "string", "example": "Jane D."},
                "role": {"allOf": [{"$ref": "#/definitions/types.Role"}], "example": "admin"}
            }
        },
        "types.Response": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Operation completed"},
                "success": {"type": "boolean", "example": true}
            }
        },
        "types.ErrorBody": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "User not found"},
                "request_id": {"type": "string"},
                "success": {"type": "boolean", "example": false}
            }
        },
        "types.RegisterResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "User registered. Please verify your email."},
                "success": {"type": "boolean", "example": true},
                "user": {"$ref": "#/definitions/types.PublicUser"},
                "verification_sent": {"type": "boolean", "example": true}
            }
        },
        "types.LoginResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "token": {"type": "string", "example": "eyJhbGciOiJI..."},
                "user": {"$ref": "#/definitions/types.PublicUser"}
            }
        },
        "types.UserResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "success": {"type": "boolean", "example": true},
                "user": {"$ref": "#/definitions/types.PublicUser"}
            }
        },
        "types.UsersResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "users": {"type": "array", "items": {"$ref": "#/definitions/types.PublicUser"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the session token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Identity Service API",
	Description:      "Registration, email verification, login, password reset, profile and user administration.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
