package policy

// Schema is the JSON schema a rendered policy document is checked against
// before it is sent to AWS
const Schema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "definitions": {
        "stringOrSlice": {
            "anyOf": [
                {"type": "string"},
                {"type": "array", "items": {"type": "string"}, "minItems": 1}
            ]
        }
    },
    "properties": {
        "Version": {
            "type": "string",
            "enum": ["2012-10-17", "2008-10-17"]
        },
        "Statement": {
            "type": "array",
            "minItems": 1,
            "items": {
                "type": "object",
                "properties": {
                    "Sid": {
                        "type": "string",
                        "pattern": "^[A-Za-z0-9]*$"
                    },
                    "Effect": {
                        "type": "string",
                        "enum": ["Allow", "Deny"]
                    },
                    "Principal": {
                        "anyOf": [
                            {"type": "string", "enum": ["*"]},
                            {"type": "object"}
                        ]
                    },
                    "Action": {"$ref": "#/definitions/stringOrSlice"},
                    "Resource": {"$ref": "#/definitions/stringOrSlice"}
                },
                "required": ["Effect", "Action", "Resource"]
            }
        }
    },
    "required": ["Version", "Statement"]
}`
