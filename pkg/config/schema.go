package config

// Schema is the JSON schema for validating configuration files
const Schema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "properties": {
        "project": {
            "type": "string",
            "pattern": "^[a-z][a-z0-9-]*$",
            "description": "Project name, used as a prefix for cloud resources"
        },
        "region": {
            "type": "string"
        },
        "aws": {
            "type": "object",
            "properties": {
                "region": {
                    "type": "string"
                },
                "endpoint": {
                    "type": "string"
                },
                "access_key_id": {
                    "type": "string"
                },
                "secret_access_key": {
                    "type": "string"
                },
                "force_path_style": {
                    "type": "boolean"
                }
            }
        },
        "work_dir": {
            "type": "string"
        },
        "max_concurrent_uploads": {
            "type": "integer",
            "minimum": 1
        },
        "log_level": {
            "type": "string",
            "enum": ["debug", "info", "warn", "error"]
        },
        "log_format": {
            "type": "string",
            "enum": ["json", "console"]
        },
        "history": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string",
                    "enum": ["jsonfile", "dynamodb", "none"]
                },
                "options": {
                    "type": "object"
                }
            }
        },
        "tasks": {
            "type": "array",
            "items": {
                "type": "object",
                "properties": {
                    "name": {
                        "type": "string",
                        "pattern": "^[a-zA-Z0-9_-]+$"
                    },
                    "type": {
                        "type": "string",
                        "enum": ["s3_site", "ec2_host", "ecr_push", "ecs_service", "docker_build", "docker_volume", "docker_network", "compose_app"]
                    },
                    "enabled": {
                        "type": "boolean"
                    },
                    "options": {
                        "type": "object"
                    }
                },
                "required": ["name", "type"]
            }
        }
    },
    "required": ["project", "tasks"]
}`
